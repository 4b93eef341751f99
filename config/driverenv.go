package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ContractAddresses groups the settlement-contract addresses a payment
// driver needs for one network. The zero value for any field means
// "none".
type ContractAddresses struct {
	Token        string
	MultiPayment string
	LockPayment  string
	Wrapper      string
}

// DriverEnv is the payment driver's network-specific configuration, read
// entirely from environment variables. This package never runs the
// driver itself (geth RPC, gas pricing stay out of scope), but the
// agent negotiates with it over payment/signbus, so it still needs to
// parse its address book to validate a deployment before wiring the
// signing bus to it.
type DriverEnv struct {
	Network                string
	GethAddresses          []string
	PriorityFee            float64
	MaxFeePerGas           float64
	Contracts              ContractAddresses
	RequiredConfirmations  uint64
	SendoutIntervalSeconds uint64
}

// LoadDriverEnv parses the <NETWORK>_* and ERC20_* environment variables
// for network, using the teacher's os.Getenv + strconv parsing idiom
// (gateway/config/config.go). Missing optional variables leave their
// field at the zero value; GethAddresses is the only variable whose
// absence is an error, since a driver with no RPC endpoint cannot run.
func LoadDriverEnv(network string) (DriverEnv, error) {
	network = strings.ToUpper(strings.TrimSpace(network))
	if network == "" {
		return DriverEnv{}, fmt.Errorf("config: network is required")
	}

	env := DriverEnv{Network: network}

	gethRaw := strings.TrimSpace(os.Getenv(network + "_GETH_ADDR"))
	if gethRaw == "" {
		return DriverEnv{}, fmt.Errorf("config: %s_GETH_ADDR is required", network)
	}
	for _, addr := range strings.Split(gethRaw, ",") {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			env.GethAddresses = append(env.GethAddresses, trimmed)
		}
	}

	var err error
	if env.PriorityFee, err = parseFloatEnv(network + "_PRIORITY_FEE"); err != nil {
		return DriverEnv{}, err
	}
	if env.MaxFeePerGas, err = parseFloatEnv(network + "_MAX_FEE_PER_GAS"); err != nil {
		return DriverEnv{}, err
	}

	env.Contracts.MultiPayment = zeroAddressIsNone(os.Getenv(network + "_MULTI_PAYMENT_CONTRACT_ADDRESS"))
	env.Contracts.LockPayment = zeroAddressIsNone(os.Getenv(network + "_LOCK_PAYMENT_CONTRACT_ADDRESS"))
	env.Contracts.Wrapper = zeroAddressIsNone(os.Getenv(network + "_WRAPPER_CONTRACT_ADDRESS"))

	if env.RequiredConfirmations, err = parseUintEnv("ERC20_" + network + "_REQUIRED_CONFIRMATIONS"); err != nil {
		return DriverEnv{}, err
	}
	if env.SendoutIntervalSeconds, err = parseUintEnv("ERC20_SENDOUT_INTERVAL_SECS"); err != nil {
		return DriverEnv{}, err
	}

	return env, nil
}

// SymbolContractAddress reads <NETWORK>_<SYMBOL>_CONTRACT_ADDRESS for an
// arbitrary token symbol, called once per token this driver settles.
func SymbolContractAddress(network, symbol string) string {
	network = strings.ToUpper(strings.TrimSpace(network))
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return zeroAddressIsNone(os.Getenv(network + "_" + symbol + "_CONTRACT_ADDRESS"))
}

func parseFloatEnv(key string) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func parseUintEnv(key string) (uint64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func zeroAddressIsNone(addr string) string {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return ""
	}
	stripped := strings.TrimPrefix(strings.ToLower(trimmed), "0x")
	if strings.Count(stripped, "0") == len(stripped) {
		return ""
	}
	return trimmed
}
