package config

import (
	"errors"
	"fmt"
)

// ErrInputValidation is the root of every input error. It is the only error
// class that makes the process exit with a failure status.
var ErrInputValidation = errors.New("input validation failed")

// ErrConfigNotFound is returned when the input file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Input validation errors returned by Config.Validate.
var (
	ErrNoTarget                 = fmt.Errorf("%w: one of url or urls is required", ErrInputValidation)
	ErrConflictingTargets       = fmt.Errorf("%w: url and urls are mutually exclusive", ErrInputValidation)
	ErrEmptyTarget              = fmt.Errorf("%w: urls must not contain blank entries", ErrInputValidation)
	ErrInvalidConcurrency       = fmt.Errorf("%w: maxConcurrency must be >= 1", ErrInputValidation)
	ErrInvalidMaxPages          = fmt.Errorf("%w: maxPagesPerCrawl must be >= 1", ErrInputValidation)
	ErrInvalidTimeout           = fmt.Errorf("%w: navigationTimeoutMs must be >= 1000", ErrInputValidation)
	ErrInvalidWaitTimeout       = fmt.Errorf("%w: waitForContentMs must be between 0 and navigationTimeoutMs", ErrInputValidation)
	ErrInvalidRequestDelay      = fmt.Errorf("%w: requestDelayMs must be >= 0", ErrInputValidation)
	ErrInvalidHTMLExtraction    = fmt.Errorf("%w: htmlExtraction must be %q or %q", ErrInputValidation, HTMLExtractionFallback, HTMLExtractionAlways)
	ErrInvalidRenderer          = fmt.Errorf("%w: renderer must be %q or %q", ErrInputValidation, RendererHTTP, RendererBrowser)
	ErrInvalidTargetConcurrency = fmt.Errorf("%w: targetConcurrency must be >= 1", ErrInputValidation)
	ErrIncompleteKafka          = fmt.Errorf("%w: kafkaBroker and kafkaTopic must be set together", ErrInputValidation)
)
