package freesound

import "fmt"

// SoundResult is one sound returned by a text search.
type SoundResult struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Download    string `json:"download"`
	License     string `json:"license"`
	ID          int    `json:"id"`
}

type searchResponse struct {
	Previous *string       `json:"previous"`
	Next     *string       `json:"next"`
	Results  []SoundResult `json:"results"`
	Count    int           `json:"count"`
}

// ConnectionError reports a non-success HTTP status from the API.
type ConnectionError struct {
	Body       string
	StatusCode int
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("freesound returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request might succeed.
func (e *ConnectionError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
