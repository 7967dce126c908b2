package utils

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
)

type MessageBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// JSONResponse builds an API Gateway response with a JSON body.
func JSONResponse(statusCode int, data any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(data)
	if err != nil {
		statusCode = 500
		body = []byte(`{"message":"Internal Server Error"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func ErrorResponse(statusCode int, message string) events.APIGatewayProxyResponse {
	return JSONResponse(statusCode, MessageBody{Message: message})
}
