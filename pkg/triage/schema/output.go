package schema

import (
	"encoding/json"
)

// AgentOutput is the validated result of classifying one email: the drafted
// reply, the committed category and the extracted customer information.
//
// The zero value is not valid; build one with NewAgentOutput or
// DecodeAgentOutput. Accessors return copies, so a constructed AgentOutput
// cannot be changed by its holders.
type AgentOutput struct {
	responseEmail EmailRecord
	category      Category
	customer      CustomerInformation
}

// NewAgentOutput validates every component and returns an AgentOutput that
// owns its own copy of the customer information.
func NewAgentOutput(reply EmailRecord, category Category, info CustomerInformation) (AgentOutput, error) {
	if err := reply.validate("response_email"); err != nil {
		return AgentOutput{}, err
	}
	if _, err := ParseCategory(string(category)); err != nil {
		return AgentOutput{}, err
	}
	if err := info.validate("customer_information"); err != nil {
		return AgentOutput{}, err
	}
	return AgentOutput{
		responseEmail: reply,
		category:      category,
		customer:      info.clone(),
	}, nil
}

func (o AgentOutput) ResponseEmail() EmailRecord {
	return o.responseEmail
}

func (o AgentOutput) Category() Category {
	return o.category
}

func (o AgentOutput) CustomerInformation() CustomerInformation {
	return o.customer.clone()
}

type agentOutputWire struct {
	ResponseEmail       *emailWire    `json:"response_email"`
	Category            *string       `json:"category"`
	CustomerInformation *customerWire `json:"customer_information"`
}

// DecodeAgentOutput parses a structured-generation result. Missing fields,
// wrong JSON types and categories outside the closed set are reported as
// *ValidationError; nothing is defaulted or coerced.
func DecodeAgentOutput(data []byte) (AgentOutput, error) {
	var w agentOutputWire
	if err := decodeJSON(data, &w); err != nil {
		return AgentOutput{}, err
	}
	if w.ResponseEmail == nil {
		return AgentOutput{}, missing("response_email")
	}
	reply, err := w.ResponseEmail.record("response_email")
	if err != nil {
		return AgentOutput{}, err
	}
	if w.Category == nil {
		return AgentOutput{}, missing("category")
	}
	category, err := ParseCategory(*w.Category)
	if err != nil {
		return AgentOutput{}, err
	}
	if w.CustomerInformation == nil {
		return AgentOutput{}, missing("customer_information")
	}
	info, err := w.CustomerInformation.info("customer_information")
	if err != nil {
		return AgentOutput{}, err
	}
	return AgentOutput{
		responseEmail: reply,
		category:      category,
		customer:      info,
	}, nil
}

type agentOutputJSON struct {
	ResponseEmail       EmailRecord         `json:"response_email"`
	Category            Category            `json:"category"`
	CustomerInformation CustomerInformation `json:"customer_information"`
}

func (o AgentOutput) MarshalJSON() ([]byte, error) {
	return json.Marshal(agentOutputJSON{
		ResponseEmail:       o.responseEmail,
		Category:            o.category,
		CustomerInformation: o.customer,
	})
}
