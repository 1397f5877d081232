package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mikey/contact-guard/internal/core"
	"github.com/mikey/contact-guard/internal/di"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	if flags.Email == "" && flags.IP == "" {
		fmt.Println("At least one of -email or -ip is required")
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(func(logger *zap.Logger, guard *core.Guard, log core.SubmissionLog) error {
		defer logger.Sync()
		defer func() {
			if closer, ok := log.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}()
		return report(context.Background(), guard, flags)
	}); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// report prints the window left per key and overall
func report(ctx context.Context, guard *core.Guard, flags *di.CLIFlags) error {
	policy := guard.Policy()

	fmt.Printf("\n=== Cooldown Policy ===\n")
	fmt.Printf("Email cooldown: %v\n", policy.EmailCooldown)
	fmt.Printf("IP cooldown: %v\n", policy.IPCooldown)

	fmt.Printf("\n=== Results ===\n")
	if flags.Email != "" {
		left, err := guard.RemainingCooldown(ctx, flags.Email, "")
		if err != nil {
			return err
		}
		fmt.Printf("Email %s: %ds remaining\n", core.NormalizeEmail(flags.Email), core.CeilSeconds(left))
	}
	if flags.IP != "" {
		ip := core.NormalizeIP(flags.IP)
		if ip == "" {
			fmt.Printf("IP %q: not a valid address, skipped\n", flags.IP)
		} else {
			left, err := guard.RemainingCooldown(ctx, "", ip)
			if err != nil {
				return err
			}
			fmt.Printf("IP %s: %ds remaining\n", ip, core.CeilSeconds(left))
		}
	}

	left, err := guard.RemainingCooldown(ctx, flags.Email, flags.IP)
	if err != nil {
		return err
	}
	seconds := core.CeilSeconds(left)
	fmt.Printf("Can submit: %t\n", seconds == 0)
	fmt.Printf("Remaining: %ds\n", seconds)
	return nil
}
