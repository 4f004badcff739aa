package main

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const defaultTableName = "SimulatorUsage"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	awsRegion := os.Getenv("AWS_REGION")

	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(awsRegion))
	if err != nil {
		zlog.Fatal().Err(err).Msg("AWS config cannot be loaded")
	}

	client := dynamodb.NewFromConfig(cfg)

	tableName := os.Getenv("USAGE_TABLE_NAME")
	if tableName == "" {
		tableName = defaultTableName
	}

	param := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("Id"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("Id"),
				KeyType:       types.KeyTypeHash,
			},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
		TableName:  aws.String(tableName),
		TableClass: types.TableClassStandardInfrequentAccess,
	}

	_, err = client.CreateTable(context.TODO(), param)
	if err != nil {
		zlog.Fatal().Err(err).Msg("table creation failed")
	}

	zlog.Info().Str("table_name", tableName).Msg("created successfully")
}
