package scanning

import "fmt"

// transcribePrompt asks a vision model for plain OCR output
const transcribePrompt = `Transcribe all text printed on this receipt.

Rules:
- Reproduce every printed line on its own line, top to bottom, in the order it appears.
- Keep item codes, prices, currency symbols and decimal points exactly as printed.
- Keep columns that share a printed line on the same output line, separated by a single space.
- Do not summarise, correct, translate or reorder anything.
- Do not add commentary, headings or markdown code blocks.`

const systemPrompt = "You are an expert at reading and extracting information from store receipts. You must carefully read all text and extract accurate information."

// structuredPrompt builds the extraction prompt for a block of OCR text
func structuredPrompt(rawText string) string {
	return fmt.Sprintf(`You are a receipt data extractor. Analyze this OCR text from a store receipt and extract structured data.

OCR Text:
%s

Return ONLY valid JSON in this exact format:
{
  "store_name": "Store name from the header",
  "store_location": "Store branch or address, if visible",
  "date": "YYYY-MM-DD",
  "time": "HH:MM",
  "items": [
    {
      "raw_name": "Full item name as printed (combine multi-line names)",
      "quantity": 1.0,
      "unit": "each",
      "price": 0.00,
      "discount": 0.00,
      "sku": "Product SKU or barcode, if visible",
      "category": "Produce"
    }
  ],
  "subtotal": 0.00,
  "tax": 0.00,
  "discount_total": 0.00,
  "total": 0.00,
  "payment_method": "Payment method, if visible"
}

Important:
- Price is the final price the customer pays for the line, after any discount
- Discount is a separate amount (0 if none)
- Extract units (kg, g, L, ml) separately from item names; use "each" otherwise
- Do not list totals, tax, rounding, change or payment lines as items
- Preserve the original language of item names
- Category is one of Produce, Meat, Dairy, Bakery, Pantry, Frozen, Beverage, Household, Other
- Amounts must be numbers, not strings
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`, rawText)
}
