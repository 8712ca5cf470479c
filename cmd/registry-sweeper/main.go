package main

import (
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	sundaecron "github.com/SundaeSwap-finance/shoutlog/sundae-cron"
	sundaeddb "github.com/SundaeSwap-finance/shoutlog/sundae-ddb"
	sundaews "github.com/SundaeSwap-finance/shoutlog/sundae-ws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("shoutlog-sweeper")

func main() {
	flags := append([]cli.Flag{}, sundaecli.CommonFlags...)
	flags = append(flags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaews.RegistryFlags...)

	app := sundaecli.App(service, action, flags...)
	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	logger := sundaecli.Logger(service)

	sess, err := session.NewSession()
	if err != nil {
		return err
	}
	registry, err := sundaews.OpenRegistry(sess)
	if err != nil {
		return err
	}

	metrics := sundaecli.NewMetrics(service, cloudwatch.New(sess))
	sweeper := &sundaews.Sweeper{
		Registry: registry,
		Logger:   logger,
		Metrics:  metrics,
		Dry:      sundaecli.CommonOpts.Dry,
	}

	return sundaecron.NewHandler("sweep", logger, metrics, sweeper.Run).Start()
}
