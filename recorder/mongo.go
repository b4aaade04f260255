package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/suitedirector/suitedirector/log"
	"github.com/suitedirector/suitedirector/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultDatabase   = "test_suites"
	DefaultCollection = "devices"
)

// SessionDocument is the stored shape of a DeploymentSession.
type SessionDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	DeviceAddress  string             `bson:"deviceAddress"`
	SuiteOutput    []byte             `bson:"suiteOutput"`
	StartTimestamp int64              `bson:"startTimestamp"`
	EndTimestamp   int64              `bson:"endTimestamp"`
	ExitCode       int                `bson:"exitCode"`
	SessionID      string             `bson:"sessionId"`
	SuiteName      string             `bson:"suiteName"`
	TenantID       string             `bson:"tenantId"`
	OSType         string             `bson:"osType"`
	OSVersion      string             `bson:"osVersion"`
}

// NewSessionDocument converts a session, with timestamps in epoch seconds.
func NewSessionDocument(session types.DeploymentSession) SessionDocument {
	return SessionDocument{
		DeviceAddress:  session.DeviceAddress,
		SuiteOutput:    session.Output,
		StartTimestamp: session.StartTimestamp.Unix(),
		EndTimestamp:   session.EndTimestamp.Unix(),
		ExitCode:       session.ExitCode,
		SessionID:      session.SessionID,
		SuiteName:      session.SuiteName,
		TenantID:       session.TenantID,
		OSType:         session.Device.OSType,
		OSVersion:      session.Device.OSVersion,
	}
}

type MongoOptions struct {
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoRecorder opens a client per Record call, since every suite names its
// own store through dbURL.
type MongoRecorder struct {
	opts MongoOptions
}

var _ Recorder = (*MongoRecorder)(nil)

func NewMongoRecorder(opts MongoOptions) *MongoRecorder {
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Collection == "" {
		opts.Collection = DefaultCollection
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	return &MongoRecorder{opts: opts}
}

func (r *MongoRecorder) Record(ctx context.Context, session types.DeploymentSession, dbURL string) (string, error) {
	if dbURL == "" {
		return "", types.Errorf(types.PersistenceError, "Record: no database url for session %s", session.SessionID)
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(dbURL).
		SetConnectTimeout(r.opts.ConnectTimeout).
		SetServerSelectionTimeout(r.opts.ConnectTimeout))
	if err != nil {
		return "", types.NewError(types.PersistenceError, errors.Wrap(err, "Record: connect"))
	}
	defer func() {
		if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
			log.Warnf("disconnecting session store: %v", err)
		}
	}()

	collection := client.Database(r.opts.Database).Collection(r.opts.Collection)
	return InsertSession(ctx, collection, session)
}

// InsertSession writes one session document and returns its id.
func InsertSession(ctx context.Context, collection *mongo.Collection, session types.DeploymentSession) (string, error) {
	res, err := collection.InsertOne(ctx, NewSessionDocument(session))
	if err != nil {
		return "", types.NewError(types.PersistenceError, errors.Wrap(err, "Record: insert session"))
	}
	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	default:
		return fmt.Sprint(id), nil
	}
}
