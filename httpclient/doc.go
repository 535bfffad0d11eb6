// Package httpclient is the thin HTTP layer used by the source fetcher and
// the API readiness check.
//
// Client.Do performs exactly one request. It never retries: retry policy
// belongs to the task executor, which decides per task how many attempts a
// step gets. Non-2xx responses come back together with a classified *Error
// so callers can tell a reachable-but-unhappy server from a dead one.
//
//	client, _ := httpclient.New(httpclient.Config{Timeout: 30 * time.Second})
//	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: url})
package httpclient
