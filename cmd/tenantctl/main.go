// Command tenantctl administers tenants directly against the tenantgate
// database: provisioning, licenses, access grants and invitations.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
