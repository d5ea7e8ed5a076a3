// Package eventbus implements the event bus (C5): the process's single
// sequence authority, a bounded replay buffer, subscribe/resync, and
// heartbeat delivery to connected subscribers.
package eventbus
