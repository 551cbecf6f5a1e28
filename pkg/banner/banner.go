package banner

import (
	"fmt"
)

const banner = `
███████╗███╗   ███╗██████╗ ███████╗██████╗ ██████╗  ██████╗ ███████╗████████╗
██╔════╝████╗ ████║██╔══██╗██╔════╝██╔══██╗██╔══██╗██╔═══██╗██╔════╝╚══██╔══╝
█████╗  ██╔████╔██║██████╔╝█████╗  ██████╔╝██████╔╝██║   ██║███████╗   ██║
██╔══╝  ██║╚██╔╝██║██╔══██╗██╔══╝  ██╔══██╗██╔═══╝ ██║   ██║╚════██║   ██║
███████╗██║ ╚═╝ ██║██████╔╝███████╗██║  ██║██║     ╚██████╔╝███████║   ██║
╚══════╝╚═╝     ╚═╝╚═════╝ ╚══════╝╚═╝  ╚═╝╚═╝      ╚═════╝ ╚══════╝   ╚═╝
`

// Print shows startup info for operators.
func Print(addr, dbPath, endpoint, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("Cache:    %s\n", dbPath)
	fmt.Printf("Remote:   %s\n", endpoint)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/letters - Working set, newest first, with stats")
	fmt.Println("POST /v1/letters - Cast a letter (JSON: text)")
	fmt.Println("POST /v1/letters/{id}/comments  - Add a comment (JSON: text)")
	fmt.Println("POST /v1/letters/{id}/reactions - Add a reaction (JSON: kind)")
	fmt.Println("POST /v1/letters/{id}/open      - Record a view")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://%s/v1/letters' -d '{\"text\": \"Dear X, I forgive you\"}'\n", addr)
	fmt.Printf("curl 'http://%s/v1/letters'\n", addr)
}
