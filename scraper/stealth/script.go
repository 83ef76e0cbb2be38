package stealth

// fingerprintScript runs on every new document before page scripts. Each
// override is wrapped so a non-configurable property never throws out of
// the block.
const fingerprintScript = `(() => {
  const drop = (name) => { try { delete window.navigator[name]; } catch (e) {} };
  [
    'webdriver',
    '__webdriver_script_fn', '__webdriver_script_func', '__webdriver_script_function',
    '__fxdriver_evaluate', '__fxdriver_unwrapped',
    '__driver_unwrapped', '__webdriver_unwrapped',
    '__driver_evaluate', '__webdriver_evaluate', '__selenium_evaluate'
  ].forEach(drop);

  const define = (obj, prop, getter) => {
    try {
      Object.defineProperty(obj, prop, { get: getter, configurable: true });
    } catch (e) {}
  };

  define(navigator, 'webdriver', () => false);
  define(navigator, 'plugins', () => [1, 2, 3, 4, 5]);
  define(navigator, 'languages', () => ['en-US', 'en', 'fr']);

  try {
    const getParameter = WebGLRenderingContext.prototype.getParameter;
    WebGLRenderingContext.prototype.getParameter = function (parameter) {
      if (parameter === 37445) return 'Intel Inc.';
      if (parameter === 37446) return 'Intel(R) Iris(TM) Graphics 6100';
      return getParameter.call(this, parameter);
    };
  } catch (e) {}

  try {
    const availHeight = screen.availHeight;
    const availWidth = screen.availWidth;
    define(screen, 'availHeight', () => availHeight + Math.floor(Math.random() * 20 - 10));
    define(screen, 'availWidth', () => availWidth + Math.floor(Math.random() * 20 - 10));
  } catch (e) {}

  try { console.debug = function () {}; } catch (e) {}

  try {
    if (!window.chrome) window.chrome = {};
    if (!window.chrome.runtime) {
      window.chrome.runtime = {
        onConnect: { addListener: () => {}, removeListener: () => {} },
        onMessage: { addListener: () => {}, removeListener: () => {} }
      };
    }
  } catch (e) {}

  try {
    if (navigator.permissions && navigator.permissions.query) {
      const originalQuery = navigator.permissions.query;
      navigator.permissions.query = function (parameters) {
        return originalQuery.call(this, parameters).then((result) => {
          if (parameters.name === 'notifications') {
            return { ...result, state: 'denied' };
          }
          return result;
        });
      };
    }
  } catch (e) {}

  try {
    const getImageData = CanvasRenderingContext2D.prototype.getImageData;
    CanvasRenderingContext2D.prototype.getImageData = function (sx, sy, sw, sh, settings) {
      const imageData = getImageData.call(this, sx, sy, sw, sh, settings);
      for (let i = 0; i < imageData.data.length; i += 4) {
        imageData.data[i] += Math.floor(Math.random() * 10) - 5;
        imageData.data[i + 1] += Math.floor(Math.random() * 10) - 5;
        imageData.data[i + 2] += Math.floor(Math.random() * 10) - 5;
      }
      return imageData;
    };
  } catch (e) {}
})();`
