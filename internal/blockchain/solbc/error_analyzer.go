package solbc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// ErrorAnalyzer extracts program-level detail from sendTransaction failures.
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeRPCError analyzes a jsonrpc.RPCError and extracts detailed information
func (ea *ErrorAnalyzer) AnalyzeRPCError(err error) map[string]interface{} {
	if err == nil {
		return map[string]interface{}{"error": "No error provided"}
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return map[string]interface{}{
			"type":    "generic_error",
			"message": err.Error(),
		}
	}

	result := map[string]interface{}{
		"type":    "rpc_error",
		"code":    rpcErr.Code,
		"message": rpcErr.Message,
	}

	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return result
	}
	if strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		result["simulation_failed"] = true
	}
	if logs, ok := dataMap["logs"].([]interface{}); ok {
		result["logs"] = logs
		for _, logEntry := range logs {
			logStr, ok := logEntry.(string)
			if !ok || !strings.Contains(logStr, "AnchorError occurred") {
				continue
			}
			anchorErr := parseAnchorErrorLog(logStr)
			result["anchor_error"] = anchorErr
			ea.logger.Warn("Anchor error detected",
				zap.Int("code", anchorErr.Code),
				zap.String("name", anchorErr.Name),
				zap.String("message", anchorErr.Msg))
		}
	}
	if instrErr, ok := dataMap["err"].(map[string]interface{}); ok {
		result["instruction_error"] = instrErr
	}

	return result
}

// Describe returns a one-line reason suitable for showing to a user.
func (ea *ErrorAnalyzer) Describe(err error) string {
	analysis := ea.AnalyzeRPCError(err)
	if anchorErr, ok := analysis["anchor_error"].(AnchorError); ok && anchorErr.Name != "" {
		if anchorErr.Msg != "" {
			return fmt.Sprintf("%s: %s", anchorErr.Name, anchorErr.Msg)
		}
		return anchorErr.Name
	}
	if msg, ok := analysis["message"].(string); ok {
		return msg
	}
	return "unknown error"
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: SlippageExceeded. Error Number: 6001. Error Message: Slippage tolerance exceeded."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if _, rest, ok := strings.Cut(logStr, "Error Number:"); ok {
		numPart, _, _ := strings.Cut(rest, ".")
		_, _ = fmt.Sscanf(strings.TrimSpace(numPart), "%d", &result.Code)
	}
	if _, rest, ok := strings.Cut(logStr, "Error Code:"); ok {
		name, _, _ := strings.Cut(rest, ".")
		result.Name = strings.TrimSpace(name)
	}
	if _, rest, ok := strings.Cut(logStr, "Error Message:"); ok {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(rest), ".")
	}

	return result
}

// DescribeSendError is Describe without a logger.
func DescribeSendError(err error) string {
	return (&ErrorAnalyzer{logger: zap.NewNop()}).Describe(err)
}
