package vidtex

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type loggerHolder struct{ logger logrus.FieldLogger }

var pkgLogger atomic.Pointer[loggerHolder]

func init() {
	pkgLogger.Store(&loggerHolder{logrus.StandardLogger()})
}

// SetLogger replaces the logger used by vidtex and its backend packages.
// By default, the logrus standard logger is used. A nil logger restores
// the default. Safe to call while players are running.
func SetLogger(logger logrus.FieldLogger) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	pkgLogger.Store(&loggerHolder{logger})
}

// Logger returns the logger set through [SetLogger]().
func Logger() logrus.FieldLogger {
	return pkgLogger.Load().logger
}
