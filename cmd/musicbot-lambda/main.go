package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/NikitaDmitryuk/telegram-music-bot/internal/app"
	tmbconfig "github.com/NikitaDmitryuk/telegram-music-bot/internal/config"
	"github.com/NikitaDmitryuk/telegram-music-bot/internal/logutils"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// syncHandler is the part of the handler an invocation needs.
type syncHandler interface {
	HandleUpdateSync(ctx context.Context, update tgbotapi.Update)
}

func main() {
	config, err := tmbconfig.NewConfig()
	if err != nil {
		logutils.Log.WithError(err).Fatal("Failed to initialize configuration")
	}
	logutils.InitLogger(config.LogLevel)

	application, err := app.New(config)
	if err != nil {
		logutils.Log.WithError(err).Fatal("Bot initialization failed")
	}

	lambda.Start(newHandler(application.Handler))
}

// newHandler serves one API Gateway webhook call. The update is handled to completion
// before the response, since the runtime may freeze the process right after it.
func newHandler(h syncHandler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		update, err := decodeUpdate(req)
		if err != nil {
			logutils.Log.WithError(err).Warn("Lambda: invalid update body")
			return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "invalid update"}, nil
		}

		logutils.Log.WithField("update_id", update.UpdateID).Debug("Lambda update received")
		h.HandleUpdateSync(ctx, update)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	}
}

func decodeUpdate(req events.APIGatewayProxyRequest) (tgbotapi.Update, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return tgbotapi.Update{}, err
		}
		body = decoded
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return tgbotapi.Update{}, err
	}
	return update, nil
}
