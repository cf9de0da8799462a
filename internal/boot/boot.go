// Package boot provides shared process bootstrap logic.
//
// Both binaries need some subset of: AWS config, S3, DynamoDB, SSM parameter
// fetch, and the Gemini client. This package extracts the common init
// patterns so each main's setup is a short composition of helpers.
package boot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/carelog/internal/store"
)

// AWSClients holds the core AWS SDK clients used across binaries.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitDynamo creates a DynamoDB activity store from the given config and
// table name environment variable. Fatals if the env var is empty.
func InitDynamo(cfg aws.Config, tableEnvVar string) *store.DynamoStore {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Fatal().Str("envVar", tableEnvVar).Msg("DynamoDB table environment variable is required")
	}
	ddbClient := dynamodb.NewFromConfig(cfg)
	return store.NewDynamoStore(ddbClient, tableName)
}

// InitS3 creates an S3 client and reads the bucket name from the given
// environment variable. Returns a nil client (with a warning) when the env
// var is unset, which disables archival.
func InitS3(cfg aws.Config, bucketEnvVar string) (*s3.Client, string) {
	bucket := os.Getenv(bucketEnvVar)
	if bucket == "" {
		log.Warn().Str("envVar", bucketEnvVar).Msg("Archive bucket not set — segment archival disabled")
		return nil, ""
	}
	return s3.NewFromConfig(cfg), bucket
}

// LoadGeminiKey resolves the Gemini API key from the GEMINI_API_KEY env var,
// falling back to SSM Parameter Store. Fatals when neither source yields a key.
func LoadGeminiKey(ctx context.Context, ssmClient *ssm.Client) string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	paramName := os.Getenv("SSM_API_KEY_PARAM")
	if paramName == "" {
		paramName = "/carelog/prod/gemini-api-key"
	}
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read API key from SSM")
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return *result.Parameter.Value
}

// InitGemini creates a Gemini client with the resolved API key.
func InitGemini(ctx context.Context, apiKey string) *genai.Client {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	return client
}
