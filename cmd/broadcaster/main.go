package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/shoutlog/sundae-ddb"
	sundaews "github.com/SundaeSwap-finance/shoutlog/sundae-ws"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("shoutlog-broadcaster")

func main() {
	flags := append([]cli.Flag{}, sundaecli.CommonFlags...)
	flags = append(flags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaews.BroadcastFlags...)
	flags = append(flags, sundaews.RegistryFlags...)
	flags = append(flags, sundaews.StreamNameFlag)

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
		metrics   = sundaecli.NewMetrics(service, cloudwatch.New(sess))
		deliverer = sundaews.NewDeliveryClient(sess.Config.Credentials)
		handler   = &sundaews.StreamHandler{
			Broadcaster: sundaews.NewBroadcaster(registry, deliverer, logger, metrics),
			Logger:      logger,
		}
	)

	if sundaecli.CommonOpts.Console {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err := handler.Consume(ctx, sundaews.StreamName())
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	lambda.Start(handler.HandleKinesisEvent)
	return nil
}
