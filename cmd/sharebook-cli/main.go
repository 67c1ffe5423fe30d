package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"sharebook/cmd/internal/passphrase"
	"sharebook/crypto"
	"sharebook/migration"
)

var rpcEndpoint = defaultRPCEndpoint() // Defaults to localhost, can be overridden via RPC_URL or --rpc flag
var rpcAuthToken = os.Getenv("SHAREBOOK_RPC_TOKEN")

const ownerPassEnv = "SHAREBOOK_OWNER_PASS"

func main() {
	args := os.Args[1:]
	var err error
	rpcEndpoint = defaultRPCEndpoint()
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "gen-key":
		path := "owner.keystore"
		if len(args) >= 2 {
			path = args[1]
		}
		generateOwnerKey(path)
	case "create-ledger":
		if len(args) < 3 {
			fmt.Println("Usage: create-ledger <name> <symbol>")
			return
		}
		mutate("registrar_createLedger", map[string]string{"name": args[1], "symbol": args[2]})
	case "whitelist":
		if len(args) < 3 {
			fmt.Println("Usage: whitelist <address> <raw_identity_info>")
			return
		}
		mutate("registrar_whitelist", map[string]string{"address": args[1], "info": strings.Join(args[2:], " ")})
	case "remove-whitelist":
		if len(args) < 2 {
			fmt.Println("Usage: remove-whitelist <address>")
			return
		}
		mutate("registrar_removeWhitelist", map[string]string{"address": args[1]})
	case "update-whitelist":
		if len(args) < 3 {
			fmt.Println("Usage: update-whitelist <address> <raw_identity_info>")
			return
		}
		mutate("registrar_updateWhitelist", map[string]string{"address": args[1], "info": strings.Join(args[2:], " ")})
	case "issue":
		if len(args) < 3 {
			fmt.Println("Usage: issue <address> <amount>")
			return
		}
		mutate("registrar_issue", map[string]string{"address": args[1], "amount": args[2]})
	case "transfer":
		if len(args) < 4 {
			fmt.Println("Usage: transfer <from> <to> <amount>")
			return
		}
		mutate("registrar_masterTransfer", map[string]string{"from": args[1], "to": args[2], "amount": args[3]})
	case "burn":
		if len(args) < 3 {
			fmt.Println("Usage: burn <address> <amount>")
			return
		}
		mutate("registrar_burn", map[string]string{"address": args[1], "amount": args[2]})
	case "freeze":
		mutate("registrar_toggleFreeze", nil)
	case "lock":
		if len(args) < 2 {
			fmt.Println("Usage: lock <address>")
			return
		}
		mutate("registrar_toggleLock", map[string]string{"address": args[1]})
	case "cancel":
		if len(args) < 3 {
			fmt.Println("Usage: cancel <original_address> <replacement_address>")
			return
		}
		mutate("registrar_cancelAndReissue", map[string]string{"original": args[1], "replacement": args[2]})
	case "migrate":
		if len(args) < 2 {
			fmt.Println("Usage: migrate <records.csv>")
			return
		}
		migrateRecords(args[1])
	case "finish-migration":
		params := map[string]string{}
		if len(args) >= 2 {
			params["newOwner"] = args[1]
		}
		mutate("registrar_finishMigration", params)
	case "close":
		mutate("registrar_closeForMigration", nil)
	case "status":
		query("registrar_status", nil)
	case "info":
		query("registry_info", nil)
	case "balance":
		if len(args) < 2 {
			fmt.Println("Usage: balance <address>")
			return
		}
		query("registry_balanceOf", map[string]string{"address": args[1]})
	case "holders":
		query("registry_holders", nil)
	case "verified":
		if len(args) < 2 {
			fmt.Println("Usage: verified <address>")
			return
		}
		query("registry_isVerified", map[string]string{"address": args[1]})
	case "locked":
		if len(args) < 2 {
			fmt.Println("Usage: locked <address>")
			return
		}
		query("registry_isLocked", map[string]string{"address": args[1]})
	case "resolve":
		if len(args) < 2 {
			fmt.Println("Usage: resolve <address>")
			return
		}
		query("registry_currentAddressFor", map[string]string{"address": args[1]})
	case "audit":
		params := map[string]uint64{"from": 0, "to": ^uint64(0)}
		query("audit_entries", params)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8681/rpc"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --rpc")
			}
			rpcEndpoint = args[i+1]
			i++
			continue
		}
		out = append(out, arg)
	}
	return out, nil
}

// generateOwnerKey creates a fresh owner key and writes a passphrase-protected
// keystore file. The daemon derives the controller owner from this key.
func generateOwnerKey(path string) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Refusing to overwrite existing keystore %s.\n", path)
		return
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		return
	}
	secret, err := passphrase.NewSource(ownerPassEnv).Get()
	if err != nil {
		fmt.Printf("Error reading passphrase: %v\n", err)
		return
	}
	if err := crypto.SaveOwnerKey(path, key, secret); err != nil {
		fmt.Printf("Error saving keystore: %v\n", err)
		return
	}
	fmt.Printf("New owner key saved to %s.\n", path)
	fmt.Printf("Owner address: %s\n", key.PubKey().Address().String())
}

// migrateRecords replays a CSV export one record at a time so a failed row can
// be fixed and re-run without rewinding the acknowledged rows.
func migrateRecords(path string) {
	records, err := migration.LoadRecordsFile(path)
	if err != nil {
		fmt.Printf("Error reading records: %v\n", err)
		return
	}
	for i, record := range records {
		params := map[string]string{
			"address": crypto.MustNewAddress(record.Address).String(),
			"info":    record.RawInfo,
		}
		if record.Balance != nil {
			params["balance"] = record.Balance.String()
		}
		if _, err := callRPC("registrar_migrateRecord", params, true); err != nil {
			fmt.Printf("Error migrating record %d of %d: %v\n", i+1, len(records), err)
			return
		}
	}
	fmt.Printf("Migrated %d records.\n", len(records))
	fmt.Println("Run finish-migration to open the register for transfers.")
}

func mutate(method string, param interface{}) {
	result, err := callRPC(method, param, true)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printResult(result)
}

func query(method string, param interface{}) {
	result, err := callRPC(method, param, false)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printResult(result)
}

func printResult(result json.RawMessage) {
	if len(result) == 0 || string(result) == "null" {
		fmt.Println("ok")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", "  "); err != nil {
		fmt.Println(string(result))
		return
	}
	fmt.Println(pretty.String())
}

func callRPC(method string, param interface{}, requireAuth bool) (json.RawMessage, error) {
	payload := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if param != nil {
		payload["params"] = []interface{}{param}
	} else {
		payload["params"] = []interface{}{}
	}
	body, _ := json.Marshal(payload)
	resp, err := doRPCRequest(body, requireAuth)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode response from node")
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("error from node: %s", rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

func doRPCRequest(payload []byte, requireAuth bool) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if requireAuth {
		if rpcAuthToken == "" {
			return nil, fmt.Errorf("privileged RPC call requires SHAREBOOK_RPC_TOKEN to be set")
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(rpcAuthToken))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", rpcEndpoint, err)
	}
	return resp, nil
}

func printUsage() {
	fmt.Println("Usage: sharebook-cli [--rpc <endpoint>] <command> [arguments]")
	fmt.Println()
	fmt.Println("Mutating commands require SHAREBOOK_RPC_TOKEN to match the daemon's token.")
	fmt.Println("Commands:")
	fmt.Println("  gen-key [path]                       - Generates an owner key into a passphrase-protected keystore")
	fmt.Println("  create-ledger <name> <symbol>        - Deploys the share ledger")
	fmt.Println("  whitelist <address> <info>           - Verifies an address with its raw identity info")
	fmt.Println("  remove-whitelist <address>           - Removes a zero-balance address from the whitelist")
	fmt.Println("  update-whitelist <address> <info>    - Replaces the identity info behind an address")
	fmt.Println("  issue <address> <amount>             - Issues shares to a verified address")
	fmt.Println("  transfer <from> <to> <amount>        - Moves shares between verified addresses")
	fmt.Println("  burn <address> <amount>              - Retires shares held by an address")
	fmt.Println("  freeze                               - Toggles the ledger-wide freeze")
	fmt.Println("  lock <address>                       - Toggles the per-address lock")
	fmt.Println("  cancel <original> <replacement>      - Cancels an address and reissues its shares")
	fmt.Println("  migrate <records.csv>                - Replays exported records onto a fresh ledger")
	fmt.Println("  finish-migration [new_owner]         - Marks migration complete, optionally handing off ownership")
	fmt.Println("  close                                - Irreversibly closes the register for migration")
	fmt.Println("  status                               - Shows the controller lifecycle state")
	fmt.Println("  info                                 - Shows ledger name, symbol, supply and holder count")
	fmt.Println("  balance <address>                    - Shows the share balance of an address")
	fmt.Println("  holders                              - Lists every current shareholder")
	fmt.Println("  verified <address>                   - Checks whether an address is whitelisted")
	fmt.Println("  locked <address>                     - Checks whether an address is locked")
	fmt.Println("  resolve <address>                    - Follows the cancellation chain to the active address")
	fmt.Println("  audit                                - Dumps the audit journal")
}
