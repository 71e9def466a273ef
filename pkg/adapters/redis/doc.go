// Package redis provides Redis-backed instance storage and distributed locking.
package redis
