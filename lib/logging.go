package lib

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

type LoggerStruct struct {
	Print    func(args ...interface{})
	Flush    func()
	disabled bool
}

var Logger = &LoggerStruct{
	Print: func(args ...interface{}) {
		fmt.Fprint(os.Stderr, args...)
	},
	Flush: func() {
		_ = os.Stderr.Sync()
	},
	disabled: strings.ToLower(os.Getenv("LOGGING") + " ")[:1] == "n",
}

// caller formats the file and line of the function that called into the
// logger, as "dir/file.go:123: ".
func caller() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return ""
	}
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return fmt.Sprintf("%s:%d: ", strings.Join(parts, "/"), line)
}

func (l *LoggerStruct) line(v []interface{}) []interface{} {
	var xs []string
	for _, x := range v {
		xs = append(xs, fmt.Sprint(x))
	}
	return []interface{}{caller(), strings.Join(xs, " "), "\n"}
}

func (l *LoggerStruct) format(format string, v []interface{}) string {
	return caller() + fmt.Sprintf(format, v...)
}

func (l *LoggerStruct) Println(v ...interface{}) {
	if !l.disabled {
		l.Print(l.line(v)...)
	}
}

func (l *LoggerStruct) Printf(format string, v ...interface{}) {
	if !l.disabled {
		l.Print(l.format(format, v))
	}
}

func (l *LoggerStruct) Fatal(v ...interface{}) {
	l.Print(l.line(v)...)
	l.Flush()
	os.Exit(1)
}

func (l *LoggerStruct) Fatalf(format string, v ...interface{}) {
	l.Print(l.format(format, v))
	l.Flush()
	os.Exit(1)
}
