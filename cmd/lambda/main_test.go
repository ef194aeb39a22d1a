package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSourceIPOverridesClientHeader(t *testing.T) {
	event := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{
			"x-lambda-source-ip": "10.0.0.1",
			"X-Lambda-Source-IP": "10.0.0.2",
			"content-type":       "application/json",
		},
	}
	event.RequestContext.HTTP.SourceIP = "203.0.113.9"

	got := withSourceIP(event)
	assert.Equal(t, map[string]string{
		"x-lambda-source-ip": "203.0.113.9",
		"content-type":       "application/json",
	}, got.Headers)
	assert.Len(t, event.Headers, 3)
}

func TestHandlerResolvesClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	require.NoError(t, engine.SetTrustedProxies(nil))
	engine.TrustedPlatform = sourceIPHeader
	engine.POST("/graphql", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"client_ip": c.ClientIP()})
	})

	event := events.APIGatewayV2HTTPRequest{
		RawPath: "/graphql",
		Headers: map[string]string{
			"content-type":       "application/json",
			"x-forwarded-for":    "10.9.9.9",
			"x-lambda-source-ip": "10.0.0.1",
		},
		Body: `{"query":"{ bookCount }"}`,
	}
	event.RequestContext.HTTP.Method = http.MethodPost
	event.RequestContext.HTTP.Path = "/graphql"
	event.RequestContext.HTTP.SourceIP = "203.0.113.9"

	resp, err := newHandler(engine)(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"client_ip":"203.0.113.9"}`, resp.Body)
}
