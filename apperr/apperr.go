// Package apperr holds the error kinds shared by the stores, the checkout
// pipeline and the HTTP handlers.
package apperr

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ValidationError is returned for bad input. Its message is safe to show.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Validation(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// UpstreamError wraps a failed Catalog Store or Blob Store call.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// CompensationError reports a failed cleanup after a partial write.
// It is logged, never returned to the client.
type CompensationError struct {
	OrderID string
	Err     error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for order %s: %v", e.OrderID, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error. Internal errors are logged and replaced
// by fallback so store details never reach the client.
func Respond(c *gin.Context, err error, fallback string) {
	status := Status(err)
	switch status {
	case http.StatusBadRequest:
		var v *ValidationError
		errors.As(err, &v)
		c.JSON(status, gin.H{"error": v.Msg, "field": v.Field})
	case http.StatusNotFound:
		c.JSON(status, gin.H{"error": err.Error()})
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, gin.H{"error": fallback})
	}
}
