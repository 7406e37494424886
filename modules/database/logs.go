package database

import (
	"io"
	"log"
	"os"
	"time"

	rotatelogs "github.com/lestrrat/go-file-rotatelogs"
)

// LogFiles bundles the rotating log sinks the daemon writes to.
type LogFiles struct {
	MainLogFile *rotatelogs.RotateLogs
	DBLogFile   *rotatelogs.RotateLogs
	DebugFile   *rotatelogs.RotateLogs
}

// CreateLog opens one daily-rotating log under logs/, kept for a week.
func CreateLog(name string) *rotatelogs.RotateLogs {
	writer, err := rotatelogs.New(
		"logs/"+name+"_%Y%m%d.log",
		rotatelogs.WithLinkName("logs/"+name+".log"),
		rotatelogs.WithMaxAge(7*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		log.Fatal(err)
	}

	return writer
}

// OpenLogs opens all sinks and points the standard logger at the main one.
func OpenLogs() LogFiles {
	files := LogFiles{
		MainLogFile: CreateLog("main"),
		DBLogFile:   CreateLog("db"),
		DebugFile:   CreateLog("debug"),
	}
	log.SetOutput(io.MultiWriter(os.Stderr, files.MainLogFile))

	return files
}

func (files *LogFiles) CloseAll() {
	if err := files.MainLogFile.Close(); err != nil {
		log.Println(err)
	}
	if err := files.DBLogFile.Close(); err != nil {
		log.Println(err)
	}
	if err := files.DebugFile.Close(); err != nil {
		log.Println(err)
	}
}
