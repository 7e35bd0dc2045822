package kernel

import (
	"github.com/sirupsen/logrus"
)

func (k *Kernel) hartLog(h Hart) *logrus.Entry {
	return k.log.WithField("hart", h.ID())
}

// tracef logs hot path events. It is rate limited so that timer ticks do not
// flood the log.
func (k *Kernel) tracef(h Hart, format string, args ...any) {
	if !k.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	if !k.traceLimit.Allow() {
		return
	}
	k.hartLog(h).Debugf(format, args...)
}

func (k *Kernel) errorf(h Hart, format string, args ...any) {
	k.hartLog(h).Errorf(format, args...)
}
