package main

import (
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/shoutlog/sundae-ddb"
	sundaerest "github.com/SundaeSwap-finance/shoutlog/sundae-rest"
	sundaesecret "github.com/SundaeSwap-finance/shoutlog/sundae-secret"
	sundaews "github.com/SundaeSwap-finance/shoutlog/sundae-ws"
	"github.com/SundaeSwap-finance/shoutlog/sundae-ws/publish"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("shoutlog-api")

func main() {
	flags := append([]cli.Flag{sundaecli.PortFlag(3000)}, sundaecli.CommonFlags...)
	flags = append(flags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaews.BroadcastFlags...)
	flags = append(flags, sundaews.RegistryFlags...)
	flags = append(flags, sundaews.StreamNameFlag, sundaews.QueueFlag)
	flags = append(flags, sundaesecret.SecretFlags...)

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

	var (
		metrics     = sundaecli.NewMetrics(service, cloudwatch.New(sess))
		deliverer   = sundaews.NewDeliveryClient(sess.Config.Credentials)
		broadcaster = sundaews.NewBroadcaster(registry, deliverer, logger, metrics)
		api         = &sundaews.API{Broadcaster: broadcaster, Logger: logger}
	)
	if sundaews.BroadcastOpts.Queue {
		streamName := sundaews.StreamName()
		logger.Info().Str("stream", streamName).Msg("queueing publishes")
		api.Queue = publish.New(kinesis.New(sess), streamName)
	}

	keys, err := sundaesecret.LoadAPIKeys(sess)
	if err != nil {
		return err
	}

	router := sundaerest.Middlewares(logger, chi.NewRouter())
	router.Use(sundaerest.RequireAPIKey(keys...))
	api.Routes(router)
	return sundaerest.Webserver(service, logger, router)
}
