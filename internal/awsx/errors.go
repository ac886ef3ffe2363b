package awsx

import (
	"errors"

	"github.com/aws/smithy-go"
)

// IsConditionalCheckFailed reports whether err is a DynamoDB conditional
// write rejection, matched by service error code so wrapped SDK errors are
// detected too.
func IsConditionalCheckFailed(err error) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}
