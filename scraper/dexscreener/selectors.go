package dexscreener

// DOM selectors for the DEX Screener listing table. If the site layout
// changes these are the first thing to update; extraction degrades to an
// empty page rather than crashing when they stop matching.
const (
	primaryRowSelector  = ".ds-dex-table-row-base-token-name"
	fallbackRowSelector = `[class*="table-row"]`
)

// blockDetectionScript inspects the DOM for anti-bot challenge markers.
const blockDetectionScript = `(() => {
  const indicators = [
    document.querySelector('[data-ray]'),
    document.querySelector('.cf-browser-verification'),
    document.querySelector('#cf-challenge-stage'),
    document.title.includes('Just a moment'),
    document.title.includes('Access denied'),
    document.body.innerText.includes('Cloudflare'),
    document.body.innerText.includes('DDoS protection'),
    document.querySelector('.challenge-form'),
    document.body.innerText.includes('Checking your browser'),
    document.querySelector('.cf-checking-browser'),
    document.body.innerText.includes('Ray ID'),
    document.querySelector('#challenge-form')
  ];
  return {
    isBlocked: indicators.some((i) => i !== null && i !== false),
    title: document.title,
    hasTable: !!document.querySelector('.ds-dex-table-row-base-token-name'),
    bodyText: document.body.innerText.substring(0, 200)
  };
})()`

// extractScript zips the per-column selectors positionally into row objects
// whose keys match the models.TokenRecord JSON tags.
const extractScript = `(() => {
  const texts = (sel) => Array.from(document.querySelectorAll(sel), (el) => (el.textContent || '').trim());
  const names = texts('.ds-dex-table-row-base-token-name');
  const symbols = texts('.ds-dex-table-row-base-token-symbol');
  const quotes = texts('.ds-dex-table-row-quote-token-symbol');
  const prices = Array.from(document.querySelectorAll('.ds-dex-table-row-col-price'),
    (el) => (el.textContent || '').replace(/\s+/g, ''));
  const volumes = texts('.ds-dex-table-row-col-volume');
  const mcaps = texts('.ds-dex-table-row-col-market-cap');
  const liq = texts('.ds-dex-table-row-col-liquidity');
  const txns = texts('.ds-dex-table-row-col-txns');
  const ages = texts('.ds-dex-table-row-col-pair-age');
  const m5 = texts('.ds-dex-table-row-col-price-change-m5');
  const h1 = texts('.ds-dex-table-row-col-price-change-h1');
  const h6 = texts('.ds-dex-table-row-col-price-change-h6');
  const h24 = texts('.ds-dex-table-row-col-price-change-h24');
  const hrefs = Array.from(document.querySelectorAll('a.ds-dex-table-row'),
    (a) => a.getAttribute('href') || '');

  const pick = (arr, i) => arr[i] !== undefined ? arr[i] : '';
  const rows = [];
  for (let i = 0; i < names.length; i++) {
    rows.push({
      name: names[i],
      symbol: pick(symbols, i),
      symbol1: pick(quotes, i),
      price: pick(prices, i),
      volume: pick(volumes, i),
      liquidity: pick(liq, i),
      mcap: pick(mcaps, i),
      transactions: pick(txns, i),
      age: pick(ages, i),
      'change-5m': pick(m5, i),
      'change-1h': pick(h1, i),
      'change-6h': pick(h6, i),
      'change-24h': pick(h24, i),
      href: pick(hrefs, i)
    });
  }
  return rows;
})()`
