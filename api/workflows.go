package api

import (
	"context"
	"errors"
	"fmt"

	"fpg-order-system/checkout"
	"fpg-order-system/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

var (
	ErrCheckoutNotFound = errors.New("checkout not found")
	ErrCheckoutExists   = errors.New("checkout already started")
)

// Checkouts is how the HTTP layer talks to running checkout workflows.
type Checkouts interface {
	Start(ctx context.Context, input workflows.CheckoutInput) error
	Signal(ctx context.Context, orderNumber, signal string, arg interface{}) error
	State(ctx context.Context, orderNumber string) (checkout.Session, error)
}

// TemporalCheckouts implements Checkouts on a Temporal client.
type TemporalCheckouts struct {
	client    client.Client
	taskQueue string
}

func NewTemporalCheckouts(c client.Client, taskQueue string) *TemporalCheckouts {
	return &TemporalCheckouts{client: c, taskQueue: taskQueue}
}

// Start begins the checkout workflow. An order number can only ever be used by one workflow.
func (t *TemporalCheckouts) Start(ctx context.Context, input workflows.CheckoutInput) error {
	opts := client.StartWorkflowOptions{
		ID:                                       workflows.CheckoutWorkflowID(input.OrderNumber),
		TaskQueue:                                t.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}

	_, err := t.client.ExecuteWorkflow(ctx, opts, workflows.CheckoutWorkflow, input)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return fmt.Errorf("%w: %s", ErrCheckoutExists, input.OrderNumber)
		}
		return fmt.Errorf("failed to start checkout %s: %w", input.OrderNumber, err)
	}
	return nil
}

func (t *TemporalCheckouts) Signal(ctx context.Context, orderNumber, signal string, arg interface{}) error {
	err := t.client.SignalWorkflow(ctx, workflows.CheckoutWorkflowID(orderNumber), "", signal, arg)
	if err != nil {
		return mapNotFound(orderNumber, fmt.Errorf("failed to signal %s: %w", signal, err))
	}
	return nil
}

func (t *TemporalCheckouts) State(ctx context.Context, orderNumber string) (checkout.Session, error) {
	var s checkout.Session
	resp, err := t.client.QueryWorkflow(ctx, workflows.CheckoutWorkflowID(orderNumber), "", workflows.QueryState)
	if err != nil {
		return s, mapNotFound(orderNumber, fmt.Errorf("failed to query checkout: %w", err))
	}
	if err := resp.Get(&s); err != nil {
		return s, fmt.Errorf("failed to decode checkout state: %w", err)
	}
	return s, nil
}

func mapNotFound(orderNumber string, err error) error {
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", ErrCheckoutNotFound, orderNumber)
	}
	return err
}
