package s3

import (
	"context"
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	"github.com/koustreak/bucketview/internal/errs"
)

// mapError translates an AWS SDK error into a *errs.Error.
// API error codes are checked first, then the raw HTTP status.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NoSuchKey", "NoSuchUpload", "NotFound":
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden", "ExpiredToken":
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError", "InvalidArgument":
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		case "EntityTooLarge":
			return errs.Wrap(errs.ErrKindTooLarge, msg, err)
		case "RequestTimeout", "SlowDown", "Throttling":
			return errs.Wrap(errs.ErrKindTimeout, msg, err)
		}
	}

	// HeadObject / HeadBucket errors carry no body, only a status.
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch status := respErr.HTTPStatusCode(); {
		case status == http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case status == http.StatusForbidden || status == http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case status == http.StatusRequestEntityTooLarge:
			return errs.Wrap(errs.ErrKindTooLarge, msg, err)
		case status == http.StatusBadRequest:
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		case status >= 500:
			return errs.Wrap(errs.ErrKindOperationFailed, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
