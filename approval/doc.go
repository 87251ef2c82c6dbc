// Package approval implements the human-in-the-loop gate. Agents (or any
// caller) file a request naming the options a human may pick; the gate
// resolves each request exactly once and wakes every waiter with the chosen
// option.
//
// Responding with an option the request never offered is rejected and the
// request stays pending, so a typo in a client cannot burn the single
// resolution.
package approval
