package main

import (
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/shoutlog/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/shoutlog/sundae-ddb"
	sundaews "github.com/SundaeSwap-finance/shoutlog/sundae-ws"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("shoutlog-ws")

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
	sess, err := session.NewSession()
	if err != nil {
		return err
	}
	registry, err := sundaews.OpenRegistry(sess)
	if err != nil {
		return err
	}

	handler := &sundaews.Handler{
		Connections: registry,
		Logger:      sundaecli.Logger(service),
	}
	lambda.Start(handler.HandleEvent)
	return nil
}
