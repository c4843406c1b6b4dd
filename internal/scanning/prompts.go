package scanning

// IdentifyPrompt asks a generative backend to name the main object in a photo
const IdentifyPrompt = `Identify the main object in this image. Focus on the most dominant, clearly visible object.

Return ONLY valid JSON in this exact format:
{
  "name": "name of the object, in Indonesian",
  "confidence": 0.0
}

Important:
- confidence is a number between 0 and 1 reflecting how clearly the object can be seen
- Do not include any text before or after the JSON`

// PredictPrompt asks a generative backend to judge how long a food item will stay safe to eat
const PredictPrompt = `Analyse the food in this image in detail and estimate how many more days it will be safe to eat.

Consider:
- Colour and texture
- Signs of freshness or spoilage
- The kind of food and its usual shelf life
- Any visible storage conditions

Return ONLY valid JSON in this exact format:
{
  "item_name": "main food or ingredient",
  "condition_description": "condition of the food (fresh, wilted, rotten, ...)",
  "predicted_remaining_days": 0,
  "reasoning": "why the prediction was made, based on what is visible",
  "confidence": 0.0
}

Important:
- predicted_remaining_days is an integer; be realistic and conservative for food safety
- confidence is a number between 0 and 1
- Write item_name, condition_description and reasoning in Indonesian
- Do not include any text before or after the JSON`

// ReceiptPrompt asks a generative backend to list the purchased items on a receipt
const ReceiptPrompt = `Analyse the shopping receipt in this image and extract every purchased item.

Instructions:
- Focus on purchased products only
- Ignore store details, dates, times, totals, tax and change
- Copy item names exactly as printed on the receipt
- If no quantity is printed, use 1
- If no price is printed, use 0
- Prices use Indonesian formatting: "12.500" means twelve thousand five hundred
- Do not list the same item twice

Return ONLY valid JSON in this exact format:
{
  "items": [
    {
      "name": "item name",
      "quantity": 1,
      "price": 0.0,
      "confidence": 0.0
    }
  ],
  "confidence": 0.0
}

Important:
- price is the unit price as a number, not a string
- each confidence, and the overall confidence, is a number between 0 and 1 reflecting how legible the text is
- Do not include any text before or after the JSON`
