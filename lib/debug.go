package lib

import (
	"os"
	"strings"
	"time"
)

var doDebug = strings.ToLower(os.Getenv("DEBUG") + " ")[:1] == "y"

type Debug struct {
	start time.Time
	name  string
}

func (d *Debug) Start() {
	Logger.Printf("start %s\n", d.name)
}

func (d *Debug) End() {
	Logger.Printf("end %s %s\n", d.name, time.Since(d.start))
}

func (d *Debug) Log() {
	Logger.Printf("%s %s\n", d.name, time.Since(d.start))
}
