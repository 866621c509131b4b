/*
Package resilience provides a circuit breaker for calls to local services
that may simply not be running.

The Discord presence client wraps every connect-and-send in a Breaker. When
the Discord desktop app is closed, dialing its IPC socket fails immediately
every time; after a few failures the breaker opens and calls fail fast with
ErrCircuitOpen until Cooldown elapses. The breaker never retries on its own.

Breaker is a thin layer over failsafe-go's count-based circuit breaker. It
adds the IsFailure hook and maps states onto this package's State values.

# Usage

	breaker := resilience.New("discord", resilience.Settings{
		FailureThreshold: 3,
		Cooldown:         30 * time.Second,
	})

	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return client.send(ctx, frame)
	})

# States

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[trials]-> Closed
	                                            |
	                                        [failure]
	                                            v
	                                          Open
*/
package resilience
