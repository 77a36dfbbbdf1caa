package xref_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/birdbook/internal/app/xref"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type failingPropagator struct {
	calls int
}

func (f *failingPropagator) AddPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	f.calls++
	return errors.New("user service unavailable")
}

func (f *failingPropagator) AddGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	f.calls++
	return errors.New("user service unavailable")
}

func TestBestEffort_SwallowsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	inner := &failingPropagator{}
	p := xref.BestEffort(inner, zap.New(core))

	ctx := context.Background()
	p.AddPost(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	p.AddGroup(ctx, primitive.NewObjectID(), primitive.NewObjectID())

	// no retry: exactly one attempt per call
	if inner.calls != 2 {
		t.Errorf("calls: got %d, want 2", inner.calls)
	}
	if logs.Len() != 2 {
		t.Errorf("warn logs: got %d, want 2", logs.Len())
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    xref.Mode
		wantErr bool
	}{
		{"", xref.ReadModifyWrite, false},
		{"rmw", xref.ReadModifyWrite, false},
		{"atomic", xref.Atomic, false},
		{"eventual", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := xref.ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: got %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
