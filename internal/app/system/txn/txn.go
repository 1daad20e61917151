// Package txn runs multi-document writes in a MongoDB transaction, falling
// back to plain sequential execution on deployments without transaction
// support (standalone servers used in development and tests).
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes returned when sessions or transactions are unavailable.
const (
	codeIllegalOperation    = 20
	codeNoReplicationEnable = 51
	codeOperationNotAllowed = 263
)

// Run executes fn inside a transaction on db's client. fn must use the ctx it
// receives so its operations join the session.
//
// When the deployment cannot run transactions fn is executed once without
// one and a warning is logged. Any other error from fn aborts the transaction
// and is returned unchanged.
func Run(ctx context.Context, db *mongo.Database, logger *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			warnFallback(logger, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(MarkTransaction(sc))
	})
	if err != nil && IsNotSupported(err) {
		warnFallback(logger, err)
		return fn(ctx)
	}
	return err
}

type inTxnKey struct{}

// MarkTransaction returns ctx flagged as running inside a transaction. Run
// applies it; alternative runners that roll back on error may too.
func MarkTransaction(ctx context.Context) context.Context {
	return context.WithValue(ctx, inTxnKey{}, true)
}

// InTransaction reports whether fn was handed a transactional ctx. When it
// was not, writes made before a failure are not rolled back.
func InTransaction(ctx context.Context) bool {
	v, _ := ctx.Value(inTxnKey{}).(bool)
	return v
}

// Runner binds Run to a database so services can depend on an interface.
type Runner struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// Run implements the services' transaction-runner interface.
func (r Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return Run(ctx, r.DB, r.Log, fn)
}

// IsNotSupported reports whether err means the server cannot run sessions or
// multi-document transactions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case codeIllegalOperation, codeNoReplicationEnable, codeOperationNotAllowed:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	has := func(s string) bool { return strings.Contains(msg, s) }
	switch {
	case has("transaction") && has("replica set"):
		return true
	case has("transaction") && has("session"):
		return true
	case has("session") && has("not supported"):
		return true
	case has("illegal operation"):
		return true
	}
	return false
}

func warnFallback(logger *zap.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Warn("transactions not supported; running without transaction", zap.Error(err))
}
