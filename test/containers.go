// Package test provides testing utilities for the community backend,
// including test containers for MongoDB and Redis.
package test

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// MongoPort is the port exposed by the MongoDB test container.
	MongoPort = 27017
	// RedisPort is the port exposed by the Redis test container.
	RedisPort = 6379
)

// StartMongoContainer starts a standalone MongoDB container. The connection
// string is obtained with container.Endpoint(ctx, "mongodb").
func StartMongoContainer(ctx context.Context) (testcontainers.Container, error) {
	exposedPort := fmt.Sprintf("%d/tcp", MongoPort)
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{exposedPort},
				WaitingFor: wait.ForAll(
					wait.ForLog("Waiting for connections"),
					wait.ForListeningPort(nat.Port(exposedPort)),
				),
			},
			Started: true,
		})
}

// StartRedisContainer starts a Redis container. The address is obtained with
// container.Endpoint(ctx, "").
func StartRedisContainer(ctx context.Context) (testcontainers.Container, error) {
	exposedPort := fmt.Sprintf("%d/tcp", RedisPort)
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{exposedPort},
				WaitingFor: wait.ForAll(
					wait.ForLog("Ready to accept connections"),
					wait.ForListeningPort(nat.Port(exposedPort)),
				),
			},
			Started: true,
		})
}

// RandomDatabaseName returns a database name that does not collide with the
// ones of other test packages sharing the container.
func RandomDatabaseName() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return fmt.Sprintf("test-%d", r.Intn(1000000))
}
