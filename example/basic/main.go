// Command basic shows a minimal client with retries and structured
// logging against a public JSON API.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyon-labs/apiclient-go/apiclient"
)

type todo struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	client, err := apiclient.New(
		apiclient.WithBaseURL("https://jsonplaceholder.typicode.com"),
		apiclient.WithTimeout(10*time.Second),
		apiclient.WithUserAgent("apiclient-example/1.0"),
		apiclient.WithRetry(apiclient.RetryConfig{
			MaxRetries:  3,
			Delay:       200 * time.Millisecond,
			Exponential: true,
		}),
		apiclient.WithLogger(log),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build client")
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	item, err := apiclient.SendAs[todo](ctx, client, apiclient.Get("/todos/1"))
	if err != nil {
		log.Fatal().Err(err).Msg("fetch todo")
	}
	log.Info().Int("id", item.ID).Str("title", item.Title).Bool("completed", item.Completed).Msg("fetched todo")

	resp, err := client.SendContext(ctx, apiclient.Post("/todos", map[string]any{
		"title":     "write more examples",
		"completed": false,
	}))
	if err != nil {
		log.Fatal().Err(err).Msg("create todo")
	}
	log.Info().Str("status", resp.Status).Dur("duration", resp.Duration).Msg("created todo")
}
