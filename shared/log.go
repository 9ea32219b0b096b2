package shared

import (
	log "github.com/sirupsen/logrus"
)

func PanicOnError(err error, msg string) {
	if err != nil {
		log.Panicf("%s: %s", err, msg)
	}
}

// UTCFormatter stamps every entry in UTC regardless of the host zone; receipt
// times shown to users use the configured parking zone instead.
type UTCFormatter struct {
	log.Formatter
}

func (u UTCFormatter) Format(e *log.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return u.Formatter.Format(e)
}

func InitLog(level string) {
	log.SetFormatter(UTCFormatter{&log.TextFormatter{DisableColors: true, FullTimestamp: true}})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, falling back to info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
