package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jonwraymond/xbrlmcp/auth"
)

func ExampleParseCredentials() {
	q, _ := url.ParseQuery("username=analyst&password=pw&client_id=id&client_secret=secret&year=2023")

	creds, err := auth.ParseCredentials(q)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(creds)
	// Output:
	// Credentials{username=[REDACTED], password=[REDACTED], client_id=[REDACTED], client_secret=[REDACTED]}
}

func ExampleParseCredentials_absent() {
	creds, err := auth.ParseCredentials(url.Values{"year": {"2023"}})
	fmt.Println(creds == nil, err)
	// Output:
	// true <nil>
}

func ExampleParseCredentials_malformed() {
	_, err := auth.ParseCredentials(url.Values{"username": {"analyst"}, "password": {"pw"}})
	fmt.Println(errors.Is(err, auth.ErrMalformedCredentials))
	fmt.Println(err)
	// Output:
	// true
	// auth: malformed credentials: missing or empty client_id, client_secret
}

func ExampleRequireHandle() {
	_, err := auth.RequireHandle(context.Background())
	fmt.Println(err)
	// Output:
	// auth: not authenticated
}
