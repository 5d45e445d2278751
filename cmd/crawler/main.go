// Package main provides the contact-weaver CLI.
//
// Usage:
//
//	contact-weaver --config input.json
//	contact-weaver https://example.org https://example.net
package main

func main() {
	Execute()
}
