// Package state tracks per-user conversation state for the bot. A session
// holds the current FSM step plus scratch data, and the manager dispatches
// incoming text to the handler registered for that step.
package state
