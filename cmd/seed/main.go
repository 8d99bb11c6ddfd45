// Seed generates a demo owner and session keypair, registers a one-hour
// native-asset grant, and prints ready-to-submit request bodies for the
// gateway API. With DATABASE_URL set the grant is written to Postgres;
// otherwise the create-session body is printed for manual submission.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"time"

	"sessiongate/internal/config"
	"sessiongate/internal/db"
	"sessiongate/internal/evm"
	"sessiongate/internal/gateway"
	"sessiongate/internal/security"
	"sessiongate/internal/session/domain"
	sessionrepo "sessiongate/internal/session/repository"
	"sessiongate/internal/session/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	chainID := big.NewInt(cfg.ChainID)

	owner, err := security.GenerateSessionKeypair()
	if err != nil {
		log.Fatalf("seed: owner keypair: %v", err)
	}
	session, err := security.GenerateSessionKeypair()
	if err != nil {
		log.Fatalf("seed: session keypair: %v", err)
	}

	now := time.Now().UTC().Unix()
	grant := &domain.SessionGrant{
		SessionKey:      session.Address,
		Asset:           evm.ZeroAddress,
		Account:         owner.Address,
		ValidAfter:      now,
		ValidUntil:      now + 3600,
		LimitAmount:     new(big.Int).Mul(big.NewInt(1), big.NewInt(1e18)), // 1 ether
		LimitUsed:       new(big.Int),
		RefreshInterval: 0,
	}

	ownerSig, err := security.SignDigest(owner.PrivateKey, grant.Digest(chainID))
	if err != nil {
		log.Fatalf("seed: sign grant: %v", err)
	}

	if cfg.DatabaseURL != "" {
		database, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer database.Close()
		registry := service.NewRegistryService(sessionrepo.NewPostgresRepository(database), nil)
		if err := registry.Create(context.Background(), owner.Address, grant); err != nil {
			log.Fatalf("seed: create grant: %v", err)
		}
		log.Printf("seed: grant stored for session key %s", session.Address)
	}

	op := &gateway.DelegatedOperation{
		Account:    owner.Address,
		SessionKey: session.Address,
		Nonce:      0,
		Target:     owner.Address,
		Value:      new(big.Int).Mul(big.NewInt(1), big.NewInt(1e17)), // 0.1 ether
	}
	opSig, err := security.SignDigest(session.PrivateKey, op.Hash(chainID))
	if err != nil {
		log.Fatalf("seed: sign operation: %v", err)
	}

	fmt.Printf("owner account:    %s\n", owner.Address)
	fmt.Printf("owner key:        0x%x\n", owner.PrivateKey.Serialize())
	fmt.Printf("session key:      %s\n", session.Address)
	fmt.Printf("session priv key: 0x%x\n\n", session.PrivateKey.Serialize())

	createBody, _ := json.MarshalIndent(map[string]any{
		"account":         grant.Account.Hex(),
		"sessionKey":      grant.SessionKey.Hex(),
		"asset":           grant.Asset.Hex(),
		"validAfter":      grant.ValidAfter,
		"validUntil":      grant.ValidUntil,
		"limitAmount":     grant.LimitAmount.String(),
		"refreshInterval": grant.RefreshInterval,
		"ownerSignature":  "0x" + hex.EncodeToString(ownerSig),
	}, "", "  ")
	fmt.Printf("POST /v1/sessions\n%s\n\n", createBody)

	submitBody, _ := json.MarshalIndent(map[string]any{
		"account":    op.Account.Hex(),
		"sessionKey": op.SessionKey.Hex(),
		"nonce":      op.Nonce,
		"target":     op.Target.Hex(),
		"value":      op.Value.String(),
		"data":       "",
		"signature":  "0x" + hex.EncodeToString(opSig),
	}, "", "  ")
	fmt.Printf("POST /v1/operations\n%s\n", submitBody)
}
