package remote

import (
	"context"
	"fmt"

	"github.com/avast/retry-go/v4"
)

// Terms is the terms-of-service document field workers must see before
// collecting data.
type Terms struct {
	Text string `firestore:"text"`
}

// FetchTerms reads the terms-of-service document from the config
// collection. An absent document yields empty terms, not an error.
func (c *Client) FetchTerms(ctx context.Context) (Terms, error) {
	var terms Terms
	err := retry.Do(
		func() error {
			doc, err := c.fs.Collection(c.configCol).Doc("termsOfService").Get(ctx)
			if err != nil {
				if doc != nil && !doc.Exists() {
					return nil
				}
				return err
			}
			return doc.DataTo(&terms)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return Terms{}, fmt.Errorf("fetch terms of service: %w", err)
	}
	return terms, nil
}
