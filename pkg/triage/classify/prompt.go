package classify

import (
	"strings"

	"github.com/shpitdev/ar-inbox-triage/pkg/triage/schema"
)

// buildInstructions renders the fixed system instructions. The category
// vocabulary comes from the schema package so the prompt and the validator
// cannot drift apart.
func buildInstructions(companyAddress string) string {
	var b strings.Builder
	b.WriteString("You are an accounts receivable assistant that categorizes and answers customer emails.\n\n")
	b.WriteString("Read the input email and categorize it into exactly one of the following categories: ")
	b.WriteString(schema.CategoryList())
	b.WriteString(".\n")
	b.WriteString("- " + string(schema.CategoryPaymentClaim) + ": the customer states that an invoice has been paid or that a payment was sent.\n")
	b.WriteString("- " + string(schema.CategoryDispute) + ": the customer contests an invoice, a charge or an amount.\n")
	b.WriteString("- " + string(schema.CategoryGeneralARRequest) + ": any other accounts receivable question.\n")
	b.WriteString("If the email does not unambiguously match " + string(schema.CategoryPaymentClaim) +
		" or " + string(schema.CategoryDispute) + ", the category MUST be " + string(schema.CategoryGeneralARRequest) + ".\n\n")

	b.WriteString("Extract the customer information from the email: the customer's name, the dates referenced by the customer ")
	b.WriteString("in YYYY-MM-DD format, the amounts referenced as numeric strings without currency symbols, the invoice ")
	b.WriteString("references without a leading '#', and the dispute details if the email is a dispute (otherwise an empty string). ")
	b.WriteString("If the customer does not state a name, use the sender's email address as the name.\n\n")

	b.WriteString("Draft a response email based on the input email and the category. ")
	b.WriteString("The response email is sent from our company's address " + companyAddress + " to the sender of the input email. ")
	b.WriteString("For " + string(schema.CategoryPaymentClaim) + " acknowledge the payment claim and say it will be matched against the open invoices. ")
	b.WriteString("For " + string(schema.CategoryDispute) + " acknowledge the dispute and say it has been passed to the disputes team. ")
	b.WriteString("For " + string(schema.CategoryGeneralARRequest) + " answer the request or say the AR support team will follow up.\n")
	b.WriteString("Respond only with the JSON object described by the response schema.")
	return b.String()
}
