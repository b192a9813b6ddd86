package schema

// Type names used by Node. They mirror the JSON Schema primitive types.
const (
	TypeObject = "object"
	TypeArray  = "array"
	TypeString = "string"
)

// Node is a provider-neutral description of the structured output the model
// must produce. Model integrations translate it into their own schema type.
type Node struct {
	Type        string
	Description string
	Enum        []string
	Items       *Node
	Properties  map[string]*Node
	// Order lists property names in the order the model should emit them.
	Order    []string
	Required []string
}

// AgentOutputSchema describes AgentOutput for structured generation. The
// category enum is read from the closed category set.
func AgentOutputSchema(companyAddress string) *Node {
	email := func(desc string) *Node {
		return object(desc, []string{"id", "receivedAt", "sender", "receiver", "subject", "body"}, map[string]*Node{
			"id":         str("The unique identifier of the email."),
			"receivedAt": str("The timestamp when the email was received."),
			"sender":     str("The sender of the email."),
			"receiver":   str("The receiver of the email."),
			"subject":    str("The subject of the email."),
			"body":       str("The body content of the email."),
		})
	}

	replyDesc := "The response email drafted for the input email and its category. " +
		"Our company's email address is: " + companyAddress + ". " +
		"If the category is " + string(CategoryPaymentClaim) + ", the reply acknowledges the payment claim. " +
		"If the category is " + string(CategoryDispute) + ", the reply acknowledges the dispute. " +
		"If the category is " + string(CategoryGeneralARRequest) + ", the reply answers the general AR request."

	customer := object(
		"The customer information extracted from the email.",
		[]string{"name", "dates", "amounts", "invoice_references", "dispute_details"},
		map[string]*Node{
			"name":               str("The name of the customer."),
			"dates":              list("The dates referenced in the email by the customer, in the format YYYY-MM-DD."),
			"amounts":            list("The amounts referenced in the email by the customer, as numeric strings."),
			"invoice_references": list("The invoice IDs referenced in the email by the customer."),
			"dispute_details":    str("The details of the dispute as described by the customer, or an empty string."),
		},
	)

	return object("", []string{"category", "customer_information", "response_email"}, map[string]*Node{
		"response_email": email(replyDesc),
		"category": {
			Type:        TypeString,
			Description: "The category of the email, one of: " + CategoryList() + ".",
			Enum:        CategoryValues(),
		},
		"customer_information": customer,
	})
}

func object(desc string, order []string, props map[string]*Node) *Node {
	return &Node{
		Type:        TypeObject,
		Description: desc,
		Properties:  props,
		Order:       order,
		Required:    append([]string(nil), order...),
	}
}

func str(desc string) *Node {
	return &Node{Type: TypeString, Description: desc}
}

func list(desc string) *Node {
	return &Node{Type: TypeArray, Description: desc, Items: &Node{Type: TypeString}}
}
