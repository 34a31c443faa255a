package browser

// stealthScript runs before every document load and masks the usual headless
// automation tells. Kept small: the flags on the allocator do most of the
// work, this covers what they cannot.
const stealthScript = `
(() => {
    'use strict';

    if (window.__stealthApplied) {
        return;
    }
    Object.defineProperty(window, '__stealthApplied', { value: true });

    // navigator.webdriver is the first thing every challenge script checks
    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined
    });

    // Headless Chrome ships zero plugins
    Object.defineProperty(navigator, 'plugins', {
        get: () => [1, 2, 3, 4, 5]
    });

    Object.defineProperty(navigator, 'languages', {
        get: () => ['en-US', 'en']
    });

    // window.chrome is absent in headless mode
    if (!window.chrome) {
        window.chrome = { runtime: {} };
    }

    // Permissions API reports "denied" for notifications in headless
    const originalQuery = window.navigator.permissions && window.navigator.permissions.query;
    if (originalQuery) {
        window.navigator.permissions.query = (parameters) => (
            parameters.name === 'notifications'
                ? Promise.resolve({ state: Notification.permission })
                : originalQuery(parameters)
        );
    }
})();
`
