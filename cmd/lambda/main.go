// Command lambda serves the bridge behind an AWS Lambda function URL or an
// API Gateway HTTP API (payload format 2.0).
package main

import (
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"go.uber.org/zap"

	"apibridge/pkg/bridge"
	"apibridge/pkg/config"
	"apibridge/pkg/httpx"
	"apibridge/pkg/logger"
	"apibridge/pkg/metrics"
	"apibridge/pkg/resolver"
)

func main() {
	eff, err := config.LoadEffectiveConfig(config.Flags{Config: "./apibridge.yaml"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.InitWithLevel(eff.Config.Logging.Level)
	metrics.Register()

	mode := resolver.ParseMode(eff.Mode)
	res := resolver.New(resolver.Select(mode, eff.Config.App))
	adapter := bridge.New(res, bridge.WithTimeout(eff.Config.Bridge.Timeout.Duration()))
	logger.Info("lambda_ready", zap.String("mode", mode.String()), zap.String("source", res.Source()))

	h := httpadapter.NewV2(httpx.NetHTTPAdapter(adapter.Handler()))
	lambda.Start(h.ProxyWithContext)
}
