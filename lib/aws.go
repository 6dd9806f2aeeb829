package lib

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

var sess *aws.Config
var sessLock sync.Mutex

// Session loads the default sdk config once per process. Region and
// credentials come from the environment, shared config, or the lambda role.
func Session() *aws.Config {
	sessLock.Lock()
	defer sessLock.Unlock()
	if sess == nil {
		if doDebug {
			d := &Debug{start: time.Now(), name: "Session"}
			d.Start()
			defer d.End()
		}
		cfg, err := config.LoadDefaultConfig(context.Background())
		if err != nil {
			panic(err)
		}
		sess = &cfg
	}
	return sess
}

func Region() string {
	return Session().Region
}
