package parameters

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Source fetches the raw parameter blob.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SSMAPI is the part of the SSM client the source needs.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

type SSMSource struct {
	client SSMAPI
	name   string
}

func NewSSMSource(ctx context.Context, region, name string) (*SSMSource, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSSMSourceWithClient(ssm.NewFromConfig(cfg), name), nil
}

func NewSSMSourceWithClient(client SSMAPI, name string) *SSMSource {
	return &SSMSource{client: client, name: name}
}

func (s *SSMSource) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get parameter %s: %w", s.name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return nil, fmt.Errorf("get parameter %s: %w", s.name, errors.New("empty parameter value"))
	}
	return []byte(*out.Parameter.Value), nil
}

// FileSource reads the blob from a local JSON file, for development runs.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read parameters file: %w", err)
	}
	return data, nil
}
