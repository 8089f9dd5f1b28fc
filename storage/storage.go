package storage

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type queueAPI interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	DequeueMessage(ctx context.Context, o *azqueue.DequeueMessageOptions) (azqueue.DequeueMessagesResponse, error)
	UpdateMessage(ctx context.Context, messageID, popReceipt, content string, o *azqueue.UpdateMessageOptions) (azqueue.UpdateMessageResponse, error)
	DeleteMessage(ctx context.Context, messageID, popReceipt string, o *azqueue.DeleteMessageOptions) (azqueue.DeleteMessageResponse, error)
}

type tableAPI interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
}

// Storage provides access to the command queue, the poison queue and the
// mapping/credential tables.
type Storage struct {
	commandQueue    queueAPI
	poisonQueue     queueAPI
	mappingTable    tableAPI
	credentialTable tableAPI
}

// Options names the queues and tables a service needs. Empty names leave
// the corresponding client unset; callers only pay for what they use.
type Options struct {
	CommandQueue    string
	PoisonQueue     string
	MappingTable    string
	CredentialTable string
}

// New creates a Storage instance from the given connection string.
func New(connStr string, opts Options) (*Storage, error) {
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	s := &Storage{}
	if opts.CommandQueue != "" {
		cq, err := azqueue.NewQueueClientFromConnectionString(connStr, opts.CommandQueue, &queueClientOptions)
		if err != nil {
			return nil, err
		}
		s.commandQueue = cq
	}
	if opts.PoisonQueue != "" {
		pq, err := azqueue.NewQueueClientFromConnectionString(connStr, opts.PoisonQueue, &queueClientOptions)
		if err != nil {
			return nil, err
		}
		s.poisonQueue = pq
	}
	if opts.MappingTable != "" || opts.CredentialTable != "" {
		tablesClientOptions := aztables.ClientOptions{
			ClientOptions: azcore.ClientOptions{
				Retry: policy.RetryOptions{
					MaxRetries:    3,
					TryTimeout:    time.Minute * 3,
					RetryDelay:    time.Second * 1,
					MaxRetryDelay: time.Second * 15,
					StatusCodes:   []int{408, 429, 500, 502, 503, 504},
				},
			},
		}
		svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
		if err != nil {
			return nil, err
		}
		if opts.MappingTable != "" {
			s.mappingTable = svc.NewClient(opts.MappingTable)
		}
		if opts.CredentialTable != "" {
			s.credentialTable = svc.NewClient(opts.CredentialTable)
		}
	}
	return s, nil
}
