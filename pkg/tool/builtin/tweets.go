package builtin

import (
	"context"

	"github.com/Xalamander777/neur-app/pkg/social"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// SearchTweets surfaces recent posts about a token or topic.
type SearchTweets struct {
	twitter *social.Twitter
}

func (s *SearchTweets) Name() string { return "search_tweets" }

func (s *SearchTweets) Description() string {
	return "Search recent tweets about a token or topic to gauge sentiment."
}

func (s *SearchTweets) RequiredEnv() []string { return []string{"TWITTER_BEARER_TOKEN"} }

func (s *SearchTweets) Parameters() tool.ParameterSchema {
	ten := 10.0
	hundred := 100.0
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"query":      {Type: "string", Description: "Search query, e.g. a cashtag like $BONK"},
			"maxResults": {Type: "integer", Description: "Maximum tweets to return", Minimum: &ten, Maximum: &hundred},
		},
		Required: []string{"query"},
	}
}

func (s *SearchTweets) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	query := stringParam(params, "query")
	if query == "" {
		return tool.Errorf("query is required"), nil
	}
	maxResults := intParam(params, "maxResults", 10)

	tweets, err := s.twitter.SearchRecent(ctx, query, maxResults)
	if err != nil {
		return tool.Errorf("tweet search failed: %v", err), nil
	}

	data := make([]map[string]any, 0, len(tweets))
	for _, tw := range tweets {
		data = append(data, map[string]any{
			"id":        tw.ID,
			"text":      tw.Text,
			"authorId":  tw.AuthorID,
			"createdAt": tw.CreatedAt,
		})
	}

	return &tool.Result{
		Success:     true,
		Data:        map[string]any{"tweets": data},
		DisplayData: map[string]any{"count": len(data)},
	}, nil
}
