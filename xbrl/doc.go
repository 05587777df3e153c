// Package xbrl is a small client for the XBRL US data API.
//
// A Client is built per request from the auth.Handle the gate published,
// so every call carries that caller's bearer token:
//
//	h, err := auth.RequireHandle(ctx)
//	if err != nil {
//	    return err
//	}
//	c, err := xbrl.NewClient(h, cfg)
//	rows, err := c.Query(ctx, xbrl.Query{
//	    Fields:     []string{"fact.*"},
//	    Parameters: map[string]string{"period.fiscal-year": "2023"},
//	    Limit:      10,
//	})
//
// Transient failures (network errors, 5xx, 429) are retried when
// Config.MaxAttempts allows it. A circuit breaker placed in Config is
// shared by every client built from it.
package xbrl
