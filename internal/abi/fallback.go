package abi

import (
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

// fallbackABIJSON declares the standard events event_decoder.py enumerates
// as its fallback chain: ERC-20 Transfer/Approval, ERC-777 Sent/Minted/
// Burned/AuthorizedOperator/RevokedOperator, ERC-1155 TransferSingle/
// TransferBatch/URI, and the ApprovalForAll event ERC-721 and ERC-1155
// share. Transfer and Approval are declared once, in the ERC-20 layout (two
// indexed addresses, value in data); ERC-721 Transfer/Approval logs have the
// same topic0 but a third indexed topic, so they do not decode against it.
const fallbackABIJSON = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"_from","type":"address","indexed":true},
		{"name":"_to","type":"address","indexed":true},
		{"name":"_value","type":"uint256","indexed":false}]},
	{"type":"event","name":"Approval","anonymous":false,"inputs":[
		{"name":"_owner","type":"address","indexed":true},
		{"name":"_spender","type":"address","indexed":true},
		{"name":"_value","type":"uint256","indexed":false}]},
	{"type":"event","name":"Sent","anonymous":false,"inputs":[
		{"name":"operator","type":"address","indexed":false},
		{"name":"from","type":"address","indexed":false},
		{"name":"to","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"data","type":"bytes","indexed":false},
		{"name":"operatorData","type":"bytes","indexed":false}]},
	{"type":"event","name":"Minted","anonymous":false,"inputs":[
		{"name":"operator","type":"address","indexed":false},
		{"name":"to","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"data","type":"bytes","indexed":false},
		{"name":"operatorData","type":"bytes","indexed":false}]},
	{"type":"event","name":"Burned","anonymous":false,"inputs":[
		{"name":"operator","type":"address","indexed":false},
		{"name":"from","type":"address","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"data","type":"bytes","indexed":false},
		{"name":"operatorData","type":"bytes","indexed":false}]},
	{"type":"event","name":"AuthorizedOperator","anonymous":false,"inputs":[
		{"name":"operator","type":"address","indexed":true},
		{"name":"tokenHolder","type":"address","indexed":true}]},
	{"type":"event","name":"RevokedOperator","anonymous":false,"inputs":[
		{"name":"operator","type":"address","indexed":true},
		{"name":"tokenHolder","type":"address","indexed":true}]},
	{"type":"event","name":"ApprovalForAll","anonymous":false,"inputs":[
		{"name":"_owner","type":"address","indexed":true},
		{"name":"_operator","type":"address","indexed":true},
		{"name":"_approved","type":"bool","indexed":false}]},
	{"type":"event","name":"TransferSingle","anonymous":false,"inputs":[
		{"name":"_operator","type":"address","indexed":true},
		{"name":"_from","type":"address","indexed":true},
		{"name":"_to","type":"address","indexed":true},
		{"name":"_id","type":"uint256","indexed":false},
		{"name":"_value","type":"uint256","indexed":false}]},
	{"type":"event","name":"TransferBatch","anonymous":false,"inputs":[
		{"name":"_operator","type":"address","indexed":true},
		{"name":"_from","type":"address","indexed":true},
		{"name":"_to","type":"address","indexed":true},
		{"name":"_ids","type":"uint256[]","indexed":false},
		{"name":"_values","type":"uint256[]","indexed":false}]},
	{"type":"event","name":"URI","anonymous":false,"inputs":[
		{"name":"_value","type":"string","indexed":false},
		{"name":"_id","type":"uint256","indexed":true}]}
]`

// FallbackChain returns the standard fallback ABI (fallbackABIJSON)
// plus, when custom events are configured (spec.md §4.6, misc.custom_abi_path
// analog), any additional caller-supplied ABI fragments such as the
// Augur-market custom events the original enumerates ("CUSTOM EVENTS, E.G.,
// FOR AUGUR").
func FallbackChain(customJSON string) ([]*gethabi.ABI, error) {
	base, err := gethabi.JSON(strings.NewReader(fallbackABIJSON))
	if err != nil {
		return nil, err
	}
	chain := []*gethabi.ABI{&base}

	if customJSON != "" {
		custom, err := gethabi.JSON(strings.NewReader(customJSON))
		if err != nil {
			return nil, err
		}
		chain = append(chain, &custom)
	}
	return chain, nil
}
