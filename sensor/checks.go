package sensor

import (
	"context"
	"net/http"

	"github.com/kbukum/caseflow/docstore"
	"github.com/kbukum/caseflow/httpclient"
)

// HTTPCheck is ready when GET url answers 2xx. Any other HTTP status means
// not ready yet; failing to get a status at all is a fault.
func HTTPCheck(client *httpclient.Client, url string) Check {
	return func(ctx context.Context) (bool, error) {
		resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: url})
		if err != nil {
			if httpclient.StatusOf(err) > 0 {
				return false, nil
			}
			return false, err
		}
		return resp.IsSuccess(), nil
	}
}

// DocumentCheck is ready when collection holds a document matching filter.
// Store errors are faults.
func DocumentCheck(store docstore.Store, collection string, filter docstore.Filter) Check {
	return func(ctx context.Context) (bool, error) {
		_, found, err := store.FindOne(ctx, collection, filter)
		if err != nil {
			return false, err
		}
		return found, nil
	}
}
