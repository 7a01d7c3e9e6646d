package console

import (
	"context"
	"errors"
	"net/http"

	svcerrors "github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/internal/errors"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/records"
	"github.com/spcopeland72-crypto/canny-carrot-admin-console-sub000/writeverify"
)

// verifyError maps a write-verify failure to its HTTP error.
func verifyError(kind records.Kind, id string, err error) *svcerrors.ServiceError {
	switch writeverify.KindOf(err) {
	case writeverify.KindIDMismatch:
		se := svcerrors.Wrap(err, svcerrors.CodeIDMismatch, "Record id does not match the id in the path", http.StatusBadRequest).
			WithDetails("id", id)
		var mm *writeverify.IDMismatchError
		if errors.As(err, &mm) {
			se.WithDetails("record_id", mm.RecordID)
		}
		return se

	case writeverify.KindInvalidRecord:
		return svcerrors.Wrap(err, svcerrors.CodeBadRequest, "Record cannot be encoded", http.StatusBadRequest)

	case writeverify.KindStoreUnavailable:
		return svcerrors.Wrap(err, svcerrors.CodeStoreUnavailable, "Store unavailable, the record was not saved", http.StatusServiceUnavailable).
			WithDetails("kind", kind.Name)

	case writeverify.KindVerificationNotFound:
		se := svcerrors.Wrap(err, svcerrors.CodeVerificationNotFound, "Saved record did not become visible in time", http.StatusGatewayTimeout).
			WithDetails("kind", kind.Name).
			WithDetails("id", id)
		var nf *writeverify.NotFoundError
		if errors.As(err, &nf) {
			se.WithDetails("attempts", nf.Attempts)
		}
		return se

	case writeverify.KindVerificationMismatch:
		se := svcerrors.Wrap(err, svcerrors.CodeVerificationMismatch, "Stored record differs from the submitted record", http.StatusConflict).
			WithDetails("kind", kind.Name).
			WithDetails("id", id)
		var mm *writeverify.MismatchError
		if errors.As(err, &mm) {
			se.WithDetails("attempts", mm.Attempts).
				WithDetails("expected", mm.Expected).
				WithDetails("observed", mm.Observed)
		}
		return se

	case writeverify.KindCancelled:
		return cancelled(err)

	default:
		return svcerrors.Internal("Update failed", err)
	}
}

// storeError maps a plain store call failure.
func storeError(ctx context.Context, err error) *svcerrors.ServiceError {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelled(err)
	}
	return svcerrors.Wrap(err, svcerrors.CodeStoreUnavailable, "Store unavailable", http.StatusServiceUnavailable)
}

func cancelled(err error) *svcerrors.ServiceError {
	return svcerrors.Wrap(err, svcerrors.CodeRequestCancelled, "Request cancelled", http.StatusServiceUnavailable)
}
